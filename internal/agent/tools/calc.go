package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// evaluateExpression computes a plain arithmetic expression over
// + - * / % ( ) and decimal numbers. Anything outside that alphabet is
// rejected before parsing, mirroring the sanitization the calculate tool
// has always applied.
func evaluateExpression(expression string) (float64, error) {
	if strings.TrimSpace(expression) == "" {
		return 0, fmt.Errorf("empty expression")
	}
	for _, r := range expression {
		if !isAllowedRune(r) {
			return 0, fmt.Errorf("invalid character %q in expression", r)
		}
	}

	tokens, err := tokenize(expression)
	if err != nil {
		return 0, err
	}

	rpn, err := toPostfix(tokens)
	if err != nil {
		return 0, err
	}

	return evalPostfix(rpn)
}

func isAllowedRune(r rune) bool {
	if unicode.IsDigit(r) || unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '+', '-', '*', '/', '%', '(', ')', '.':
		return true
	}
	return false
}

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenOperator
	tokenLeftParen
	tokenRightParen
)

type token struct {
	kind  tokenKind
	value float64
	op    byte
}

func tokenize(expression string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expression) {
		c := expression[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++

		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expression) && (expression[j] >= '0' && expression[j] <= '9' || expression[j] == '.') {
				j++
			}
			value, err := strconv.ParseFloat(expression[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("malformed number %q", expression[i:j])
			}
			tokens = append(tokens, token{kind: tokenNumber, value: value})
			i = j

		case c == '(':
			tokens = append(tokens, token{kind: tokenLeftParen})
			i++

		case c == ')':
			tokens = append(tokens, token{kind: tokenRightParen})
			i++

		case c == '+' || c == '-' || c == '*' || c == '/' || c == '%':
			// Unary minus/plus become a leading zero operand.
			if (c == '-' || c == '+') && expectsOperand(tokens) {
				tokens = append(tokens, token{kind: tokenNumber, value: 0})
			}
			tokens = append(tokens, token{kind: tokenOperator, op: c})
			i++

		default:
			return nil, fmt.Errorf("invalid character %q in expression", c)
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return tokens, nil
}

func expectsOperand(tokens []token) bool {
	if len(tokens) == 0 {
		return true
	}
	last := tokens[len(tokens)-1]
	return last.kind == tokenOperator || last.kind == tokenLeftParen
}

func precedence(op byte) int {
	switch op {
	case '+', '-':
		return 1
	case '*', '/', '%':
		return 2
	}
	return 0
}

// toPostfix converts infix tokens to reverse polish notation (shunting-yard)
func toPostfix(tokens []token) ([]token, error) {
	var output []token
	var stack []token

	for _, t := range tokens {
		switch t.kind {
		case tokenNumber:
			output = append(output, t)

		case tokenOperator:
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.kind != tokenOperator || precedence(top.op) < precedence(t.op) {
					break
				}
				output = append(output, top)
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, t)

		case tokenLeftParen:
			stack = append(stack, t)

		case tokenRightParen:
			matched := false
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.kind == tokenLeftParen {
					matched = true
					break
				}
				output = append(output, top)
			}
			if !matched {
				return nil, fmt.Errorf("mismatched parentheses")
			}
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.kind == tokenLeftParen {
			return nil, fmt.Errorf("mismatched parentheses")
		}
		output = append(output, top)
	}

	return output, nil
}

func evalPostfix(rpn []token) (float64, error) {
	var stack []float64

	for _, t := range rpn {
		switch t.kind {
		case tokenNumber:
			stack = append(stack, t.value)

		case tokenOperator:
			if len(stack) < 2 {
				return 0, fmt.Errorf("malformed expression")
			}
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]

			var result float64
			switch t.op {
			case '+':
				result = a + b
			case '-':
				result = a - b
			case '*':
				result = a * b
			case '/':
				if b == 0 {
					return 0, fmt.Errorf("division by zero")
				}
				result = a / b
			case '%':
				if b == 0 {
					return 0, fmt.Errorf("division by zero")
				}
				result = math.Mod(a, b)
			}
			stack = append(stack, result)
		}
	}

	if len(stack) != 1 {
		return 0, fmt.Errorf("malformed expression")
	}
	return stack[0], nil
}
