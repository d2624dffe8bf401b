package dto

type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

func (r *LoginRequest) Validate() error {
	return validateStruct(r)
}
