package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/allbin/serialport"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen <port>",
	Short: "Stream incoming serial data to stdout",
	Long: `Stream incoming serial data to standard output.

Reads data from the specified serial port and writes it directly to
stdout. Runs continuously until interrupted (Ctrl+C) or until the
device disappears.

With --output the stream is also appended to a file, allowing you to
resume captures without overwriting existing data.

Example usage:
  serialterm listen /dev/ttyUSB0
  serialterm listen /dev/ttyUSB0 --baud 9600
  serialterm listen /dev/ttyUSB0 --output capture.log
  serialterm listen --mock`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portPath, err := resolvePath(args)
		if err != nil {
			return err
		}

		outputPath, _ := cmd.Flags().GetString("output")
		bufferSize, _ := cmd.Flags().GetInt("buffer")

		return runListen(portPath, outputPath, bufferSize)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringP("output", "o", "", "Also append incoming data to this file")
	listenCmd.Flags().Int("buffer", 4096, "Read buffer size")
}

func runListen(portPath, outputPath string, bufferSize int) error {
	binding := newBinding()
	opts, err := portOptions(binding)
	if err != nil {
		return err
	}

	port, err := serialport.New(portPath, opts...)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer port.Close()

	var file *os.File
	if outputPath != "" {
		file, err = os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open output file: %w", err)
		}
		defer file.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived interrupt signal, shutting down...\n")
		cancel()
	}()

	// Surface port-level errors and disconnects while streaming.
	go func() {
		for ev := range port.Events() {
			switch ev.Kind {
			case serialport.EventError:
				fmt.Fprintf(os.Stderr, "\nPort error: %v\n", ev.Err)
			case serialport.EventClose:
				cancel()
			}
		}
	}()

	fmt.Fprintf(os.Stderr, "Listening on %s", portPath)
	if outputPath != "" {
		fmt.Fprintf(os.Stderr, ", appending to %s", outputPath)
	}
	fmt.Fprintf(os.Stderr, "\nPress Ctrl+C to stop\n\n")

	buffer := make([]byte, bufferSize)
	bytesRead := int64(0)
	startTime := time.Now()

	for {
		n, err := port.ReadContext(ctx, buffer)
		if err != nil {
			if ctx.Err() != nil {
				duration := time.Since(startTime)
				fmt.Fprintf(os.Stderr, "\nDone: %d bytes received in %v\n", bytesRead, duration.Round(time.Millisecond))
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		if n > 0 {
			os.Stdout.Write(buffer[:n])
			bytesRead += int64(n)

			if file != nil {
				if _, err := file.Write(buffer[:n]); err != nil {
					return fmt.Errorf("write error: %w", err)
				}
			}
		}
	}
}
