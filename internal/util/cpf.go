package util

import (
	"errors"
	"strings"
)

// OnlyDigits remove tudo que não for dígito.
func OnlyDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateCPF confere tamanho e dígitos verificadores do CPF.
func ValidateCPF(cpf string) error {
	digits := OnlyDigits(cpf)
	if len(digits) != 11 {
		return errors.New("CPF deve ter 11 dígitos")
	}

	allEqual := true
	for i := 1; i < 11; i++ {
		if digits[i] != digits[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return errors.New("CPF inválido")
	}

	if checkDigit(digits, 9) != int(digits[9]-'0') || checkDigit(digits, 10) != int(digits[10]-'0') {
		return errors.New("CPF inválido")
	}
	return nil
}

func checkDigit(digits string, length int) int {
	sum := 0
	for i := 0; i < length; i++ {
		sum += int(digits[i]-'0') * (length + 1 - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		rest = 0
	}
	return rest
}
