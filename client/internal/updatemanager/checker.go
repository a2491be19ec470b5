package updatemanager

//go:generate go run github.com/golang/mock/mockgen -package updatemanager -destination=checker_mock.go -source=./checker.go -build_flags=-mod=mod

import (
	"context"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

// Checker negotiates with the update server
type Checker interface {
	CheckForUpdate(ctx context.Context, cfg codepush.Configuration, local *codepush.LocalPackage) (codepush.UpdateCheckResult, error)
}
