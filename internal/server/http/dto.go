package http

// CredentialsRequest is the body of POST /register and POST /login.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// TokenResponse is returned on successful register and login.
type TokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// MessageResponse carries an error or informational message.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const (
	msgRegistered    = "User registered successfully"
	msgLoggedIn      = "User login successfully"
	msgUserExists    = "User already exists"
	msgInvalidCreds  = "Invalid credentials"
	msgInternal      = "Internal server error"
	msgInvalidBody   = "Invalid request body"
	msgServerRunning = "server is running."
)
