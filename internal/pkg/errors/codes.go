package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// Auth errors (2000-2999)
	ErrAuthInvalidToken = 2000
	ErrAuthTokenExpired = 2001

	// Conversation errors (3000-3999)
	ErrConversationNotFound   = 3000
	ErrConversationForbidden  = 3001
	ErrConversationDeleted    = 3002
	ErrConversationBusy       = 3003
	ErrInvalidStatusChange    = 3004
	ErrMessageNotFound        = 3005
	ErrInvalidBranchPoint     = 3006
	ErrAttachmentNotFound     = 3007

	// Tool errors (4000-4999)
	ErrToolUnknown          = 4000
	ErrToolDuplicate        = 4001
	ErrToolInvalidArguments = 4002
	ErrToolTimeout          = 4003
	ErrToolExecutionFailed  = 4004

	// Model gateway errors (5000-5999)
	ErrGatewayRequestFailed    = 5000
	ErrGatewayStreamBroken     = 5001
	ErrGatewayUsageUnavailable = 5002

	// Persistence errors (6000-6999)
	ErrPersistenceFailed = 6000
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:    {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:       {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// Auth errors
	ErrAuthInvalidToken: {ErrAuthInvalidToken, http.StatusUnauthorized, "Invalid access token"},
	ErrAuthTokenExpired: {ErrAuthTokenExpired, http.StatusUnauthorized, "Access token expired"},

	// Conversation errors
	ErrConversationNotFound:  {ErrConversationNotFound, http.StatusNotFound, "Conversation not found"},
	ErrConversationForbidden: {ErrConversationForbidden, http.StatusForbidden, "Conversation belongs to another user"},
	ErrConversationDeleted:   {ErrConversationDeleted, http.StatusGone, "Conversation has been deleted"},
	ErrConversationBusy:      {ErrConversationBusy, http.StatusConflict, "Conversation has a turn in flight"},
	ErrInvalidStatusChange:   {ErrInvalidStatusChange, http.StatusBadRequest, "Invalid conversation status transition"},
	ErrMessageNotFound:       {ErrMessageNotFound, http.StatusNotFound, "Message not found"},
	ErrInvalidBranchPoint:    {ErrInvalidBranchPoint, http.StatusBadRequest, "Invalid branch point"},
	ErrAttachmentNotFound:    {ErrAttachmentNotFound, http.StatusNotFound, "Attachment not found"},

	// Tool errors
	ErrToolUnknown:          {ErrToolUnknown, http.StatusNotFound, "Unknown tool"},
	ErrToolDuplicate:        {ErrToolDuplicate, http.StatusConflict, "Tool already registered"},
	ErrToolInvalidArguments: {ErrToolInvalidArguments, http.StatusBadRequest, "Invalid tool arguments"},
	ErrToolTimeout:          {ErrToolTimeout, http.StatusGatewayTimeout, "Tool execution timed out"},
	ErrToolExecutionFailed:  {ErrToolExecutionFailed, http.StatusInternalServerError, "Tool execution failed"},

	// Model gateway errors
	ErrGatewayRequestFailed:    {ErrGatewayRequestFailed, http.StatusBadGateway, "Model gateway request failed"},
	ErrGatewayStreamBroken:     {ErrGatewayStreamBroken, http.StatusBadGateway, "Model stream interrupted"},
	ErrGatewayUsageUnavailable: {ErrGatewayUsageUnavailable, http.StatusOK, "Token usage unavailable"},

	// Persistence errors
	ErrPersistenceFailed: {ErrPersistenceFailed, http.StatusInternalServerError, "Persistence operation failed"},
}

// GetMessage returns the message for an error code
func GetMessage(code int) string {
	if c, ok := codeMap[code]; ok {
		return c.Message
	}
	return fmt.Sprintf("Unknown error (code: %d)", code)
}

// GetHTTPStatus returns the HTTP status for an error code
func GetHTTPStatus(code int) int {
	if c, ok := codeMap[code]; ok {
		return c.Status
	}
	return http.StatusInternalServerError
}
