package auth

// User is a principal allowed to sign in.
type User struct {
	Email        string
	Name         string
	PasswordHash string
}
