package dto

type AskRequest struct {
	Question string `json:"question" validate:"required"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}
