// Command sessiond is the composition root for the session core: it wires
// the Redis-backed stores, the provider and backend gateways, and the
// session controller, runs the startup reconciliation, and logs every phase
// transition until it is stopped. It exists to exercise the library end to
// end; a real client embeds the same wiring in its host application.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"

	"github.com/swypapp/sessionkit/backend"
	consentredis "github.com/swypapp/sessionkit/consent/redisstore"
	"github.com/swypapp/sessionkit/internal/config"
	"github.com/swypapp/sessionkit/internal/logging"
	"github.com/swypapp/sessionkit/provider"
	"github.com/swypapp/sessionkit/provider/apple"
	"github.com/swypapp/sessionkit/provider/kakao"
	"github.com/swypapp/sessionkit/router"
	"github.com/swypapp/sessionkit/session"
	tokensredis "github.com/swypapp/sessionkit/tokens/redisstore"
)

const redisPingTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running sessiond: %s\n", err)
	}
	log.Printf("sessiond stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	displayAppname(cfg.AppName)

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: cfg.IsDev()})

	redisClient, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	tokenStore := tokensredis.New(redisClient)
	consentStore := consentredis.New(redisClient)
	backendGateway := backend.NewClient(cfg.BackendBaseURL, backend.WithLogger(logger))

	providers := map[provider.Variant]provider.Gateway{
		provider.Kakao: kakao.New(tokenStore, cfg.KakaoClientID, nil, kakao.WithLogger(logger)),
		provider.Apple: apple.New(tokenStore, cfg.AppleClientID, nil, apple.WithLogger(logger)),
	}

	controller, err := session.NewController(session.Deps{
		Tokens:    tokenStore,
		Consent:   consentStore,
		Providers: providers,
		Backend:   backendGateway,
	}, session.WithLogger(logger))
	if err != nil {
		return err
	}

	phaseRouter := router.New(controller)
	defer phaseRouter.Close()

	sub := controller.Subscribe()
	defer controller.Unsubscribe(sub)
	go func() {
		for phase := range sub.C() {
			logger.Info().
				Str("phase", phase.String()).
				Str("screen", string(router.ScreenFor(phase))).
				Msg("phase changed")
		}
	}()

	phase, err := controller.Bootstrap(ctx)
	if err != nil && !errors.Is(err, session.ErrSuperseded) {
		return err
	}
	logger.Info().
		Str("phase", phase.String()).
		Str("screen", string(phaseRouter.Current())).
		Msg("reconciliation complete")

	waitForStopSignal()
	return nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
