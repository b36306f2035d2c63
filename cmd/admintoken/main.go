// Command admintoken issues a back-office JWT signed with the configured secret.
package main

import (
	"fmt"
	"os"
	"time"

	"storefront-payments/config"
	"storefront-payments/internal/core/ports"
	"storefront-payments/internal/service"

	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	subject := pflag.StringP("subject", "s", "", "operator name recorded on admin actions")
	role := pflag.StringP("role", "r", ports.RoleAdmin, "role claim")
	expiry := pflag.DurationP("expiry", "e", 0, "token lifetime (default jwt.expiry)")
	pflag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "admintoken: --subject is required")
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "admintoken: jwt.secret is not configured")
		os.Exit(1)
	}

	ttl := cfg.JWT.Expiry
	if *expiry > 0 {
		ttl = *expiry
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.JWT.Secret, ttl, cfg.JWT.Issuer).Generate(*subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}
