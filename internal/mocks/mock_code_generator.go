package mocks

import "github.com/you/otpsvc/domain"

// MockCodeGenerator implements domain.CodeGenerator interface for testing
type MockCodeGenerator struct {
	GenerateFunc func(length int) (string, string, error)
	CompareFunc  func(hash, code string) bool
}

// NewMockCodeGenerator creates a new MockCodeGenerator with default behaviors
func NewMockCodeGenerator() *MockCodeGenerator {
	return &MockCodeGenerator{}
}

// Generate returns a code and its hash
func (m *MockCodeGenerator) Generate(length int) (string, string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(length)
	}
	// Default behavior: fixed code with a recognizable fake hash
	return "123456", "hashed_123456", nil
}

// Compare checks a code against a hash
func (m *MockCodeGenerator) Compare(hash, code string) bool {
	if m.CompareFunc != nil {
		return m.CompareFunc(hash, code)
	}
	// Default behavior: matches the fake hash scheme used by Generate
	return hash == "hashed_"+code
}

// Compile-time interface compliance verification
var _ domain.CodeGenerator = (*MockCodeGenerator)(nil)
