package services

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/you/otpsvc/domain"
)

// CodeGeneratorImpl implements domain.CodeGenerator with a CSPRNG source
// and bcrypt hashing, so the stored material is salted and one-way
type CodeGeneratorImpl struct {
	cost int
}

// NewCodeGenerator creates a new code generator
func NewCodeGenerator() domain.CodeGenerator {
	return &CodeGeneratorImpl{
		cost: bcrypt.DefaultCost,
	}
}

// Generate implements domain.CodeGenerator
func (g *CodeGeneratorImpl) Generate(length int) (string, string, error) {
	if length <= 0 {
		return "", "", fmt.Errorf("invalid code length: %d", length)
	}

	digits := make([]byte, length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte('0' + num.Int64())
	}
	code := string(digits)

	hashedBytes, err := bcrypt.GenerateFromPassword(digits, g.cost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash code: %w", err)
	}

	return code, string(hashedBytes), nil
}

// Compare implements domain.CodeGenerator
func (g *CodeGeneratorImpl) Compare(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
