package model

import "time"

// User — пользователь системы (администратор, гестор или фискал).
type User struct {
	ID         int64   `json:"id"`
	Nome       string  `json:"nome"`
	Email      string  `json:"email"`
	CPF        *string `json:"cpf"`
	Matricula  *string `json:"matricula"`
	PerfilID   int64   `json:"perfil_id"`
	PerfilNome string  `json:"perfil_nome,omitempty"`
	// SenhaHash — bcrypt-хэш пароля, наружу не сериализуется.
	SenhaHash string    `json:"-"`
	Ativo     bool      `json:"ativo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserUpdate — разрешённые для изменения поля пользователя.
// nil — поле не меняется.
type UserUpdate struct {
	Nome      *string `json:"nome"`
	Email     *string `json:"email"`
	CPF       *string `json:"cpf"`
	Matricula *string `json:"matricula"`
	PerfilID  *int64  `json:"perfil_id"`
}

// IsEmpty сообщает, что ни одно поле не задано.
func (u UserUpdate) IsEmpty() bool {
	return u.Nome == nil && u.Email == nil && u.CPF == nil && u.Matricula == nil && u.PerfilID == nil
}
