package api

import (
	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/feedsync/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse is the server's error body
type ErrorResponse struct {
	Message string `json:"message"`
}

// ParseError turns a non-2xx response into a classified error
func ParseError(resp *resty.Response) error {
	statusCode := resp.StatusCode()

	var errResp ErrorResponse
	if err := json.Unmarshal(resp.Body(), &errResp); err == nil && errResp.Message != "" {
		return errors.FromStatus(statusCode, errResp.Message)
	}

	return errors.FromStatus(statusCode, "")
}

// CheckResponse checks if response is successful and returns error if not
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return errors.Classify(err)
	}

	if !resp.IsSuccess() {
		return ParseError(resp)
	}

	return nil
}
