//go:build wireinject

package di

import (
	"log/slog"

	"github.com/google/wire"

	"github.com/sandeepkv93/secure-content-auth-service/internal/app"
	"github.com/sandeepkv93/secure-content-auth-service/internal/config"
	"github.com/sandeepkv93/secure-content-auth-service/internal/observability"
)

func InitializeApp(cfg *config.Config, logger *slog.Logger, runtime *observability.Runtime) (*app.App, func(), error) {
	wire.Build(InfraSet, RepositorySet, ServiceSet, HTTPSet, app.New)
	return nil, nil, nil
}

func InitializeToolkit(cfg *config.Config, logger *slog.Logger) (*Toolkit, func(), error) {
	wire.Build(InfraSet, RepositorySet, ServiceSet, wire.Struct(new(Toolkit), "*"))
	return nil, nil, nil
}
