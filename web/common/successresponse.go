package common

// SuccessResponse wraps single-object endpoints under a data key, matching
// the envelope of SearchResponse.
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

func NewSuccessResponse(data interface{}) *SuccessResponse {
	return &SuccessResponse{Data: data}
}
