package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"

	"github.com/allbin/serialport"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List all available serial ports on the system.

This command scans for communication-capable serial devices including:
- USB serial adapters (ttyUSB*)
- USB CDC/ACM devices (ttyACM*)
- Standard serial ports (ttyS*)
- ARM/Raspberry Pi ports (ttyAMA*)
- And other platform-specific serial devices

Virtual terminals and pseudo-terminals are excluded from the listing.
USB devices are annotated with vendor, product and serial metadata
where sysfs provides it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := newBinding().List()
		if err != nil {
			return fmt.Errorf("error listing ports: %w", err)
		}

		if len(infos) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}

		tableFormat, _ := cmd.Flags().GetBool("table")
		if tableFormat {
			renderDeviceTable(infos)
		} else {
			renderDeviceList(infos)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

func renderDeviceList(infos []serialport.DeviceInfo) {
	pathStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))

	fmt.Printf("Found %d serial port(s):\n", len(infos))
	for _, info := range infos {
		line := fmt.Sprintf("  %s  %s", pathStyle.Render(info.Path), info.Description)
		if info.Manufacturer != "" || info.SerialNumber != "" {
			line += fmt.Sprintf("  [%s %s, serial %s]", info.Manufacturer, info.Product, info.SerialNumber)
		}
		fmt.Println(line)
	}
}

func renderDeviceTable(infos []serialport.DeviceInfo) {
	const (
		columnKeyPath    = "path"
		columnKeyDesc    = "description"
		columnKeyVendor  = "vendor"
		columnKeyProduct = "product"
		columnKeySerial  = "serial"
	)

	rows := make([]table.Row, 0, len(infos))
	for _, info := range infos {
		vendor := info.Manufacturer
		if vendor == "" && info.VendorID != "" {
			vendor = info.VendorID
		}
		product := info.Product
		if product == "" && info.ProductID != "" {
			product = info.ProductID
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyPath:    info.Path,
			columnKeyDesc:    info.Description,
			columnKeyVendor:  vendor,
			columnKeyProduct: product,
			columnKeySerial:  info.SerialNumber,
		}))
	}

	t := table.New([]table.Column{
		table.NewColumn(columnKeyPath, "Port", 16),
		table.NewColumn(columnKeyDesc, "Description", 22),
		table.NewColumn(columnKeyVendor, "Vendor", 14),
		table.NewColumn(columnKeyProduct, "Product", 22),
		table.NewColumn(columnKeySerial, "Serial", 12),
	}).WithRows(rows).
		BorderRounded().
		WithBaseStyle(lipgloss.NewStyle().Align(lipgloss.Left))

	fmt.Fprintln(os.Stdout, t.View())
}
