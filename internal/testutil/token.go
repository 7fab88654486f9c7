package testutil

// DefaultRunToken is used by FixedRunToken when no token is configured.
const DefaultRunToken = "test-run-default"

// FixedRunToken generates the same run token every time.
//
// It satisfies controller.TokenGenerator. A scenario run with a fixed token
// produces the same tick IDs on every execution, which golden traces rely
// on. Unlike controller.FixedGenerator it never runs out.
//
// Thread-safety: FixedRunToken is stateless and safe for concurrent use.
type FixedRunToken struct {
	token string
}

// NewFixedRunToken creates a fixed run token generator.
//
// The token is typically set in the scenario YAML:
//
//	run_token: "test-run-00000000-0000-0000-0000-000000000001"
//
// If token is empty, Generate() returns DefaultRunToken.
func NewFixedRunToken(token string) *FixedRunToken {
	if token == "" {
		token = DefaultRunToken
	}
	return &FixedRunToken{token: token}
}

// Generate returns the fixed run token.
func (g *FixedRunToken) Generate() string {
	return g.token
}
