package model

import "time"

// ContractedParty — контрагент (contratado).
type ContractedParty struct {
	ID        int64     `json:"id"`
	Nome      string    `json:"nome"`
	Email     string    `json:"email"`
	CNPJ      *string   `json:"cnpj"`
	CPF       *string   `json:"cpf"`
	Telefone  *string   `json:"telefone"`
	Ativo     bool      `json:"ativo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContractedPartyUpdate — разрешённые для изменения поля контрагента.
type ContractedPartyUpdate struct {
	Nome     *string `json:"nome"`
	Email    *string `json:"email"`
	CNPJ     *string `json:"cnpj"`
	CPF      *string `json:"cpf"`
	Telefone *string `json:"telefone"`
}

// IsEmpty сообщает, что ни одно поле не задано.
func (u ContractedPartyUpdate) IsEmpty() bool {
	return u.Nome == nil && u.Email == nil && u.CNPJ == nil && u.CPF == nil && u.Telefone == nil
}
