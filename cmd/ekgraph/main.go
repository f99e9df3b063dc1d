// ekgraph receives real-time EKG sample streams from an acquisition device
// over websocket or serial, keeps rolling per-channel buffers, and serves
// window frames, metrics and CSV exports to view clients.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardialab/ekgraph"
	"github.com/cardialab/ekgraph/config"
	"github.com/cardialab/ekgraph/database"
	"github.com/cardialab/ekgraph/decode"
	"github.com/cardialab/ekgraph/ingest"
	"github.com/cardialab/ekgraph/storage"
	"github.com/cardialab/ekgraph/transport/wsocket"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	addr       string
	serialPort string
	baud       int
	bufferSize int
	record     bool
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ekgraph",
	Short: "Real-time EKG stream visualizer backend",
	Long: `ekgraph ingests EKG sample streams from an ESP32 acquisition device,
maintains rolling per-channel buffers, and serves window frames to view
clients along with metrics and CSV export.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "12-channel websocket visualizer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		return runServer(cfg, ingest.FixedChannels{N: cfg.Stream.Channels})
	},
}

var singleCmd = &cobra.Command{
	Use:   "single",
	Short: "Single-channel visualizer with 100ms batched delivery",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		cfg.View.YPolicy = "fixed"
		if !cmd.Flags().Changed("buffer-size") {
			// 10 seconds at 860 samples/sec
			cfg.Stream.BufferSize = 8600
		}
		return runServer(cfg, ingest.BatchedSingle{
			Interval: cfg.Stream.BatchInterval,
		})
	},
}

var serialCmd = &cobra.Command{
	Use:   "serial",
	Short: "Dual-channel serial capture",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		cfg.View.XPolicy = "scrolling"
		cfg.View.YMarginAbs = 200
		cfg.View.YMarginFrac = 0
		if !cmd.Flags().Changed("buffer-size") {
			cfg.Stream.BufferSize = 2000
		}
		return runSerial(cfg)
	},
}

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Log-only diagnostic server for bracket-group messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		return runDiag(cfg)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./ekgraph.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&addr, "addr", "a", "0.0.0.0:8765", "listen address")
	rootCmd.PersistentFlags().IntVar(&bufferSize, "buffer-size", 0, "rolling buffer capacity per channel")
	rootCmd.PersistentFlags().BoolVar(&record, "record", false, "record accepted samples to sqlite")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "ekgraph.db", "recording database path")

	serialCmd.Flags().StringVarP(&serialPort, "port", "p", "/dev/ttyUSB0", "serial port")
	serialCmd.Flags().IntVarP(&baud, "baud", "b", 250000, "baud rate")

	rootCmd.AddCommand(serveCmd, singleCmd, serialCmd, diagCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ekgraph")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func loadConfig() *config.Config {
	cfg := config.Default()

	if err := viper.Unmarshal(cfg); err != nil {
		log.Printf("config: %v (continuing with defaults)", err)
	}

	cfg.Server.Addr = addr
	if bufferSize > 0 {
		cfg.Stream.BufferSize = bufferSize
	}
	if serialPort != "" {
		cfg.Serial.Port = serialPort
	}
	if baud > 0 {
		cfg.Serial.Baud = baud
	}
	cfg.Recording.Enabled = cfg.Recording.Enabled || record
	if dbPath != "" {
		cfg.Recording.Path = dbPath
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	return cfg
}

func openBackend(cfg *config.Config) (storage.Backend, error) {
	if !cfg.Recording.Enabled {
		return nil, nil
	}
	db, err := database.Get(cfg.Recording.Path)
	if err != nil {
		return nil, err
	}
	return database.NewBackend(db), nil
}

func newGraph(cfg *config.Config, mode ingest.Mode) (*ekgraph.Graph, chan error, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, nil, err
	}

	errCh := make(chan error)
	g, err := ekgraph.New(cfg, mode, backend, errCh)
	if err != nil {
		return nil, nil, err
	}
	return g, errCh, nil
}

func runServer(cfg *config.Config, mode ingest.Mode) error {
	g, errCh, err := newGraph(cfg, mode)
	if err != nil {
		return err
	}

	go func() {
		log.Fatalln("fatal:", <-errCh)
	}()

	log.Printf("listening on %s, waiting for device connection", cfg.Server.Addr)
	return g.RunServer()
}

func runSerial(cfg *config.Config) error {
	g, errCh, err := newGraph(cfg, ingest.DecimalPair{})
	if err != nil {
		return err
	}

	go func() {
		log.Fatalln("fatal:", <-errCh)
	}()

	// metrics, view and export stay available while the port is read
	go func() {
		if err := g.RunServer(); err != nil {
			log.Fatalln("server:", err)
		}
	}()

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	log.Printf("reading %s at %d baud", cfg.Serial.Port, cfg.Serial.Baud)
	return g.RunSerial(ctx)
}

// runDiag accepts bracket-group messages and logs their statistics without
// buffering anything; used to inspect what a device is actually sending.
func runDiag(cfg *config.Config) error {
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	wsrv := wsocket.NewServer(wsocket.Config{
		PingInterval: cfg.Server.PingInterval,
		PongTimeout:  cfg.Server.PongTimeout,
		CloseTimeout: cfg.Server.CloseTimeout,
	})

	r.GET("/ingest", wsrv.Handler(func(ctx context.Context, conn *wsocket.Conn) {
		log.Printf("device connected: %s", conn.Peer())
		defer log.Printf("device disconnected: %s", conn.Peer())

		for {
			line, err := conn.ReadLine(ctx)
			if err != nil {
				return
			}
			if decode.IsComment(line) {
				continue
			}

			groups, err := decode.DecodeBracketGroups(line, cfg.Stream.Channels)
			if err != nil {
				log.Printf("unparseable message: %v", err)
				if conn.SendAck(ctx, ingest.AckError) != nil {
					return
				}
				continue
			}

			stats := decode.SummarizeGroups(groups, 5)
			log.Printf(
				"ts=%d sets=%d channels=%d min=%d avg=%.1f max=%d",
				time.Now().Unix(), stats.Sets, stats.Channels,
				stats.Min, stats.Avg, stats.Max,
			)

			if conn.SendAck(ctx, ingest.AckOK) != nil {
				return
			}
		}
	}))

	log.Printf("diagnostic server on %s", cfg.Server.Addr)
	return r.Run(cfg.Server.Addr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
