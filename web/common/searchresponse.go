package common

// Pagination carries the total row count of a listing. Offset paging is
// left to the caller; handlers return full slices for the requested range.
type Pagination struct {
	Total int64 `json:"total"`
}

// SearchResponse wraps list endpoints: the rows plus their pagination.
type SearchResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

func NewSearchResponse(data interface{}, total int64) *SearchResponse {
	return &SearchResponse{
		Data:       data,
		Pagination: Pagination{Total: total},
	}
}
