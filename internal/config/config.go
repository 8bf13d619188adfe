package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	Gateway  Gateway  `envPrefix:"GATEWAY_"`
	Identity Identity `envPrefix:"IDENTITY_"`
}

// Gateway holds the payment-gateway API credentials. KeySecret signs the
// client callback proof, WebhookSecret signs webhook bodies.
type Gateway struct {
	BaseAPIURL    string `env:"BASE_API_URL"`
	KeyID         string `env:"KEY_ID"`
	KeySecret     string `env:"KEY_SECRET"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

// Identity holds the identity-provider admin API settings. CookieName is the
// session cookie the storefront client sets.
type Identity struct {
	BaseURL    string `env:"BASE_URL"`
	ServiceKey string `env:"SERVICE_KEY"`
	CookieName string `env:"COOKIE_NAME" envDefault:"auth_token"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

func (e Environment) IsProduction() bool {
	return e.Name == "production"
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
