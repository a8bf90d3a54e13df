package router

import (
	authapp "github.com/agrovia/agrovia-api/internal/application"
	"github.com/agrovia/agrovia-api/internal/container"
	"github.com/agrovia/agrovia-api/internal/infrastructure/cache"
	"github.com/agrovia/agrovia-api/internal/infrastructure/messaging"
	pginfra "github.com/agrovia/agrovia-api/internal/infrastructure/postgres"
	handlers "github.com/agrovia/agrovia-api/internal/interface/http"
	"github.com/agrovia/agrovia-api/internal/router/modules"
)

func buildAuthModule() *modules.AuthModule {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	store := pginfra.NewCredentialStore(container.GetPGPool())
	users := pginfra.NewUserDirectory(container.GetPGPool())
	authCache := cache.NewAuthCache(cache.NewRedisKV(container.GetRedis()), logger)

	dispatcher := messaging.NewDispatcher(container.GetEventPub(), logger)
	dispatcher.Subscribe("UserRegistered", messaging.NewEmailNotifier(container.GetEmailPub(), cfg.MailSendEnabled, logger))
	dispatcher.Subscribe("UserLoggedIn", messaging.NewEmailNotifier(container.GetEmailPub(), cfg.MailSendEnabled, logger))
	audit := messaging.NewAuditIndexer(container.GetES(), cfg.ESAuditIndex, logger)
	for _, name := range []string{"UserRegistered", "UserLoggedIn", "UserLoggedOut", "PasswordChanged", "TokenRefreshed"} {
		dispatcher.Subscribe(name, audit)
	}

	svc := authapp.NewAuthService(store, users, authCache, dispatcher, container.GetJWT(), logger)
	handler := handlers.NewAuthHandler(svc, logger, cfg.CookieDomain, cfg.CookieSecure)

	return modules.NewAuthModule(handler, authCache, container.GetJWT())
}

// InitModules wires up all feature modules and registers them with the
// router registry. Called once during startup.
func InitModules(r *Registry) {
	r.Add(buildAuthModule())
}
