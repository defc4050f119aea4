package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/asset-registry/internal/platform/ctxutil"
	"github.com/yungbote/asset-registry/internal/platform/envutil"
	"github.com/yungbote/asset-registry/internal/platform/logger"
	"github.com/yungbote/asset-registry/internal/services"
)

// tokengen prints a service token signed with SERVICE_JWT_SECRET.
func main() {
	var sid, role string
	var ttl time.Duration
	flag.StringVar(&sid, "sid", "", "resource manager id the token is issued to")
	flag.StringVar(&role, "role", ctxutil.RoleService, "SERVICE or GM")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	flag.Parse()

	secret := envutil.String("SERVICE_JWT_SECRET", "")
	if secret == "" {
		fmt.Println("SERVICE_JWT_SECRET is not set")
		os.Exit(1)
	}
	auth := services.NewAuthService(logger.Nop(), secret)
	token, err := auth.IssueToken(sid, role, ttl)
	if err != nil {
		fmt.Printf("issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
