package pkg

import "golang.org/x/crypto/bcrypt"

const DefaultPasswordHashCost = 14

func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultPasswordHashCost)
}

// HashPasswordWithCost is used by tests and tools that cannot afford the default cost.
func HashPasswordWithCost(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return BytesToString(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
