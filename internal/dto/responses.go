package dto

// ErrorResponse стандартное тело ошибки.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ListResponse страница списка.
type ListResponse struct {
	Data   interface{} `json:"data"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// PhotoResponse ответ на загрузку фото.
type PhotoResponse struct {
	URL string `json:"url"`
}
