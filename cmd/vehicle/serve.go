package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/goliath-teleop/core/domain/diagnostic"
	"github.com/goliath-teleop/core/domain/session"
	"github.com/goliath-teleop/core/domain/video"
	"github.com/goliath-teleop/core/pkg/api"
	"github.com/goliath-teleop/core/pkg/config"
	"github.com/goliath-teleop/core/pkg/hal"
	"github.com/goliath-teleop/core/pkg/imageproc"
	customlog "github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/motors"
	"github.com/goliath-teleop/core/pkg/ssd1306"
	"github.com/goliath-teleop/core/pkg/zeromq"
	"github.com/goliath-teleop/core/services"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vehicle and wait for an operator",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadVehicleConfig(configDir)
	if err != nil {
		return err
	}
	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath, "vehicle")
	if err != nil {
		return err
	}
	logger.Infof("Starting vehicle %s (hardware driver %s)", cfg.VehicleID, cfg.Hardware.Driver)

	provider, err := hal.NewProvider(cfg.Hardware, logger)
	if err != nil {
		return err
	}
	tracks, err := motors.OpenTracksDriver(provider, cfg.Motors, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracks.Stop(); err != nil {
			logger.Errorf("Failed to stop tracks on exit: %v", err)
		}
	}()
	hw := session.Hardware{Tracks: tracks, Turret: motors.NewTurretDriver(logger)}

	diagnosticService := diagnostic.NewDiagnosticService(cfg.VehicleID)
	// Observers on slow buses run on the observer pool.
	var slowObservers []session.Observer

	if cfg.Display.Enabled {
		screen, closeDisplay := openStatusScreen(provider, cfg, logger)
		if screen != nil {
			defer closeDisplay()
			slowObservers = append(slowObservers, screen.Observe)
		}
	}

	configService, err := services.NewVehicleConfigService(filepath.Join(configDir, config.VehicleConfigFilename), logger)
	if err != nil {
		return err
	}

	if cfg.ZeroMQ.Enabled() {
		zmqService, err := zeromq.NewZeroMQService(cfg.ZeroMQ, logger)
		if err != nil {
			return err
		}
		configPublisher := zeromq.RegisterVehicleHandlers(zmqService, configService.GetCurrentConfig,
			func() interface{} { return diagnosticService.Status() }, logger)
		configService.SetPublisher(configPublisher)
		if err := zmqService.Start(); err != nil {
			zmqService.Stop()
			return err
		}
		defer zmqService.Stop()
		events := zeromq.NewEventPublisher(zmqService, logger)
		slowObservers = append(slowObservers, diagnostic.TelemetryObserver(events, logger))
		logger.Infof("Telemetry bus on %s (requests on %s)", zmqService.PublishEndpoint(), zmqService.RequestEndpoint())
	}

	observerPool := diagnostic.NewObserverPool(logger, slowObservers...)
	observerPool.Start()
	defer observerPool.Stop()
	observers := []session.Observer{diagnosticService.Observe, observerPool.Observe}

	videoFactory := func(host string) video.Pipeline {
		return video.NewPipeline(host, cfg.Video, logger)
	}
	sessionServer := session.NewServer(hw, videoFactory, session.OptionsFrom(*cfg), logger, observers...)

	app := fiber.New(fiber.Config{
		AppName:               "Goliath Vehicle",
		ErrorHandler:          api.ErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	api.RegisterHealthRoutes(app, cfg.VehicleID, sessionServer, logger)
	app.Get("/api/v1/status", diagnosticService.GetStatusHandler)
	api.RegisterConfigRoutes(app, configService, logger)
	api.RegisterControlRoutes(app, cfg.Server.ControlPath, sessionServer, logger)

	listenErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
		logger.Infof("Server starting on %s", addr)
		listenErr <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Infof("Shutting down vehicle...")
	case err := <-listenErr:
		logger.Errorf("Server stopped: %v", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := sessionServer.Shutdown(ctx); err != nil {
		logger.Errorf("Active session did not terminate in time: %v", err)
	}
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	logger.Infof("Vehicle exited properly")
	return nil
}

// openStatusScreen brings the display up and shows the splash. A failure is
// logged and leaves the vehicle running without a display.
func openStatusScreen(provider hal.Provider, cfg *config.VehicleConfig, logger customlog.Logger) (*diagnostic.StatusScreen, func()) {
	bus, err := provider.Bus(cfg.Display.I2CBus)
	if err != nil {
		logger.Warnf("Status display disabled: %v", err)
		return nil, nil
	}
	display, err := ssd1306.Open(bus, ssd1306.ConfigFrom(cfg.Display), logger)
	if err != nil {
		logger.Warnf("Status display disabled: %v", err)
		_ = bus.Close()
		return nil, nil
	}
	screen := diagnostic.NewStatusScreen(display, cfg.VehicleID, logger)
	if cfg.Display.Logo != "" {
		logo, err := imageproc.LoadGray(cfg.Display.Logo)
		if err != nil {
			logger.Warnf("Splash logo not loaded: %v", err)
		} else {
			screen.SetLogo(logo)
		}
	}
	if err := screen.Splash(); err != nil {
		logger.Warnf("Failed to draw splash: %v", err)
	}
	return screen, func() {
		display.Close()
		if err := bus.Close(); err != nil {
			logger.Debugf("I2C bus close: %v", err)
		}
	}
}
