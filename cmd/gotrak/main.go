package main

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/birdlab/gotrak/pkg/config"
	"github.com/birdlab/gotrak/pkg/trak"
)

const envPrefix = "GOTRAK"

var rootCmd = &cobra.Command{
	Use:   "gotrak",
	Short: "session manager and pose sampler for ATC3DG-class magnetic trackers",
	Long: `gotrak opens a multi-sensor 6-DOF magnetic tracker, configures its
sensors, and polls position/orientation data either once or continuously.`,
}

func main() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "configuration file path")
	rootCmd.PersistentFlags().StringP("port", "p", "", "serial port override (e.g. /dev/ttyUSB0)")
	rootCmd.PersistentFlags().Bool("mock", false, "use a simulated device instead of a serial port")
	rootCmd.PersistentFlags().Bool("debug", false, "toggle debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(streamCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges, in increasing precedence: built-in defaults, the yaml
// config file, GOTRAK_* environment variables, and command-line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	def := config.Default()
	v.SetDefault("serial.port", def.Serial.Port)
	v.SetDefault("serial.baud_rate", def.Serial.BaudRate)
	v.SetDefault("serial.read_timeout", def.Serial.ReadTimeout)
	v.SetDefault("session.measurement_rate_hz", def.Session.MeasurementRateHz)
	v.SetDefault("session.max_range", def.Session.MaxRange)
	v.SetDefault("session.poll_interval", def.Session.PollInterval)
	v.SetDefault("session.retry_budget", def.Session.RetryBudget)
	v.SetDefault("session.output_mode", def.Session.OutputMode)
	v.SetDefault("session.hemisphere", def.Session.Hemisphere)
	v.SetDefault("mock.sensors", def.Mock.Sensors)
	v.SetDefault("mock.transmitter", def.Mock.Transmitter)
	v.SetDefault("mock.radius", def.Mock.Radius)
	v.SetDefault("mock.orbit_period", def.Mock.OrbitPeriod)
	v.SetDefault("mock.noise_level", def.Mock.NoiseLevel)
	v.SetDefault("debug", def.Debug)

	if path, err := cmd.Flags().GetString("config"); err == nil && path != "" {
		v.SetConfigFile(path)
	} else if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindPFlag("serial.port", cmd.Flags().Lookup("port"))
	_ = v.BindPFlag("debug", cmd.Flags().Lookup("debug"))

	// A missing config file is fine: defaults, env and flags still apply.
	if err := v.ReadInConfig(); err == nil {
		log.Debugln("using config file:", v.ConfigFileUsed())
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newTransport builds a transport from the configuration and the --mock flag.
func newTransport(cmd *cobra.Command, cfg *config.Config) trak.Transport {
	if mock, _ := cmd.Flags().GetBool("mock"); mock {
		log.Infoln("using simulated device")
		return trak.NewMock(&cfg.Mock)
	}
	return trak.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Serial.ReadTimeout)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "write a configuration template",
	Long: `init writes the default configuration to a file, or prints it to
stdout with --print. The file can then be edited and passed via --config.`,
	Example: `  gotrak init --print
  gotrak init --output /path/to/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()

		if printFlag, _ := cmd.Flags().GetBool("print"); printFlag {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		}

		output, _ := cmd.Flags().GetString("output")
		overwrite, _ := cmd.Flags().GetBool("yes")
		if _, err := os.Stat(output); err == nil && !overwrite {
			return fmt.Errorf("%s exists, pass --yes to overwrite", output)
		}
		if err := cfg.Save(output); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", output)
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "list available serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := trak.Ports()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Println(p.Name)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("print", false, "print config to stdout")
	initCmd.Flags().StringP("output", "o", "config.yaml", "output path")
	initCmd.Flags().BoolP("yes", "y", false, "overwrite without confirmation")

	streamCmd.Flags().Duration("duration", 0, "stop after this long (0 = run until interrupted)")
	streamCmd.Flags().Int("smooth", 0, "moving-average window for positions (0 = off)")
	streamCmd.Flags().Int("every", 1, "print every Nth sweep")
}
