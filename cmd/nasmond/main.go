// Command nasmond publishes NAS telemetry over MQTT, either through its
// embedded broker or to an external one.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/naspanel/nasmon/broker"
	"github.com/naspanel/nasmon/collector"
	"github.com/naspanel/nasmon/config"
	"github.com/naspanel/nasmon/encoding"
	"github.com/naspanel/nasmon/mqttclient"
	"github.com/naspanel/nasmon/pkg/logger"
	"github.com/naspanel/nasmon/probe"
)

var (
	flagConfig         string
	flagGenerateConfig string
	flagTest           bool
	flagVerbose        bool
)

func main() {
	root := &cobra.Command{
		Use:          "nasmond",
		Short:        "NAS telemetry publisher with an embedded MQTT broker",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.Setup(flagVerbose)

			if flagGenerateConfig != "" {
				if err := config.WriteDefault(flagGenerateConfig); err != nil {
					return fmt.Errorf("failed to write default config: %w", err)
				}
				log.Info("default configuration written", "path", flagGenerateConfig)
				return nil
			}

			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			if flagTest {
				return runTest(cmd.Context(), cfg)
			}
			return run(cmd.Context(), cfg, log)
		},
	}

	root.Flags().StringVarP(&flagConfig, "config", "c", "", "path to the configuration file")
	root.Flags().StringVar(&flagGenerateConfig, "generate-config", "", "write the default configuration to PATH and exit")
	root.Flags().BoolVar(&flagTest, "test", false, "run one collection cycle, print the payload and exit")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("nasmond failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var pub collector.Publisher

	switch cfg.MQTT.Type {
	case "external":
		client, err := mqttclient.New(mqttclient.Config{
			Host:      cfg.MQTT.Host,
			Port:      cfg.MQTT.Port,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			ClientID:  cfg.MQTT.ClientID,
			KeepAlive: cfg.MQTT.KeepAliveDuration(),
			Logger:    log,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		pub = client

	default:
		b := broker.New(brokerConfig(cfg, log))
		if err := b.Start(ctx); err != nil {
			return err
		}
		defer b.Stop()
		pub = b
	}

	coll, err := buildCollector(cfg, log, pub)
	if err != nil {
		return err
	}

	coll.Run(ctx)
	return nil
}

// brokerConfig maps the file configuration onto broker settings. mqtt.qos
// governs the scheduler's publishes only; subscriber grants stay capped
// at QoS 1.
func brokerConfig(cfg *config.Config, log *slog.Logger) *broker.Config {
	return &broker.Config{
		Addr:        cfg.MQTT.Addr(),
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		MaxQoS:      encoding.QoS1,
		MetricsAddr: cfg.Metrics.Listen,
		Logger:      log,
	}
}

// runTest performs a single collection cycle and prints the payload
func runTest(ctx context.Context, cfg *config.Config) error {
	coll, err := buildCollector(cfg, slog.New(slog.DiscardHandler), nopPublisher{})
	if err != nil {
		return err
	}

	payload := coll.CollectOnce(ctx)
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

func buildCollector(cfg *config.Config, log *slog.Logger, pub collector.Publisher) (*collector.Collector, error) {
	hostname, err := cfg.Server.ResolveHostname()
	if err != nil {
		return nil, err
	}
	ip, err := cfg.Server.ResolveIP()
	if err != nil {
		return nil, err
	}

	registry := probe.NewRegistry()
	for _, cc := range cfg.CustomCollectors {
		p, err := probe.NewCustom(cc.Spec())
		if err != nil {
			return nil, err
		}
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}

	return collector.New(collector.Config{
		Hostname: hostname,
		IP:       ip,
		Topic:    cfg.MQTT.Topic,
		QoS:      encoding.QoS(cfg.MQTT.QoS),
		Interval: cfg.Interval(),
		Logger:   log,
	}, probe.NewSystem(), registry, pub), nil
}

// nopPublisher backs --test mode, where the payload goes to stdout
// instead of a broker
type nopPublisher struct{}

func (nopPublisher) Publish(string, []byte, encoding.QoS, bool) error { return nil }
