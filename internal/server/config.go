package server

import "time"

type Config struct {
	// MongoURI empty selects the in-memory store (dev mode).
	MongoURI        string
	MongoDB         string
	DocsCollection  string
	UsersCollection string
	JWTIssuer       string
	TokenTTL        time.Duration
}

func (c *Config) setDefaults() {
	if c.MongoDB == "" {
		c.MongoDB = "inkwell"
	}
	if c.DocsCollection == "" {
		c.DocsCollection = "documents"
	}
	if c.UsersCollection == "" {
		c.UsersCollection = "users"
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "inkwell-backend"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 15 * time.Minute
	}
}
