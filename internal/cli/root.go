package cli

import (
	"fmt"
	"os"

	"github.com/allbin/serialport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serialterm",
	Short: "Serial port toolbox",
	Long: `serialterm is a toolbox for working with serial devices.

It can list available ports, send and receive data, and run an
interactive terminal. All commands accept --mock to run against a
simulated loopback device instead of real hardware, which is handy for
demos and for developing consumers without a cable attached.

Defaults for baud rate and framing can be set in a config file
(~/.serialterm.yaml by default) or through SERIALTERM_* environment
variables; flags take precedence.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.serialterm.yaml)")
	rootCmd.PersistentFlags().IntP("baud", "b", 115200, "Baud rate")
	rootCmd.PersistentFlags().Int("data-bits", 8, "Data bits: 5-8")
	rootCmd.PersistentFlags().Int("stop-bits", 1, "Stop bits: 1 or 2")
	rootCmd.PersistentFlags().String("parity", "none", "Parity: none, odd, even")
	rootCmd.PersistentFlags().String("flow-control", "none", "Flow control: none, rtscts")
	rootCmd.PersistentFlags().Bool("lock", false, "Request an exclusive lock on the device")
	rootCmd.PersistentFlags().Bool("mock", false, "Use a simulated loopback device instead of real hardware")

	viper.BindPFlag("baud", rootCmd.PersistentFlags().Lookup("baud"))
	viper.BindPFlag("data-bits", rootCmd.PersistentFlags().Lookup("data-bits"))
	viper.BindPFlag("stop-bits", rootCmd.PersistentFlags().Lookup("stop-bits"))
	viper.BindPFlag("parity", rootCmd.PersistentFlags().Lookup("parity"))
	viper.BindPFlag("flow-control", rootCmd.PersistentFlags().Lookup("flow-control"))
	viper.BindPFlag("lock", rootCmd.PersistentFlags().Lookup("lock"))
	viper.BindPFlag("mock", rootCmd.PersistentFlags().Lookup("mock"))
}

// initConfig reads in the config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".serialterm")
		}
	}

	viper.SetEnvPrefix("serialterm")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// MockDevicePath is the loopback device registered when --mock is given
const MockDevicePath = "/mock/loop0"

// newBinding returns the binding selected by flags. With --mock it is a
// MockBinding preloaded with an echoing loopback device.
func newBinding() serialport.Binding {
	if !viper.GetBool("mock") {
		return serialport.NewNativeBinding()
	}
	mock := serialport.NewMockBinding()
	mock.CreateDevice(MockDevicePath, serialport.MockDeviceConfig{
		Echo:       true,
		ReadyBytes: []byte("READY\r\n"),
	})
	return mock
}

// portOptions assembles port options from the resolved configuration
func portOptions(binding serialport.Binding) ([]serialport.Option, error) {
	opts := []serialport.Option{
		serialport.WithBinding(binding),
		serialport.WithBaudRate(viper.GetInt("baud")),
		serialport.WithDataBits(viper.GetInt("data-bits")),
		serialport.WithStopBits(viper.GetInt("stop-bits")),
	}

	switch viper.GetString("parity") {
	case "none", "":
		opts = append(opts, serialport.WithParity(serialport.ParityNone))
	case "odd":
		opts = append(opts, serialport.WithParity(serialport.ParityOdd))
	case "even":
		opts = append(opts, serialport.WithParity(serialport.ParityEven))
	default:
		return nil, fmt.Errorf("unknown parity %q", viper.GetString("parity"))
	}

	switch viper.GetString("flow-control") {
	case "none", "":
	case "rtscts":
		opts = append(opts, serialport.WithFlowControl(serialport.FlowControlRTSCTS))
	default:
		return nil, fmt.Errorf("unknown flow control %q", viper.GetString("flow-control"))
	}

	if viper.GetBool("lock") {
		opts = append(opts, serialport.WithLock())
	}
	return opts, nil
}

// resolvePath picks the device path from args, falling back to the mock
// loopback device when --mock is active
func resolvePath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if viper.GetBool("mock") {
		return MockDevicePath, nil
	}
	return "", fmt.Errorf("a device path is required (or use --mock)")
}
