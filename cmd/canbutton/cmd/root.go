package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "canbutton",
	Short:        "Bridge a button press to a CAN frame",
	Long:         `canbutton sends a fixed CAN frame on every button press and logs filtered inbound traffic.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	rootCmd.ExecuteContext(ctx)
}

const (
	flagController = "controller"
	flagPort       = "port"
	flagBaudrate   = "baudrate"
	flagCANRate    = "rate"
	flagTxDepth    = "tx-queue-depth"
	flagRxDepth    = "rx-queue-depth"
	flagID         = "id"
	flagExtended   = "extended"
	flagFilterID   = "filter-id"
	flagFilterMask = "filter-mask"
	flagDebug      = "debug"
)

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagController, "c", "Virtual", "what controller to use")
	pf.StringP(flagPort, "p", "*", "com-port, * = select interactively")
	pf.IntP(flagBaudrate, "b", 115200, "baudrate")
	pf.Float64P(flagCANRate, "r", 500, "CAN bitrate in kbit/s")
	pf.Int(flagTxDepth, 4, "transmit queue depth")
	pf.Int(flagRxDepth, 100, "receive queue depth")
	pf.Uint32(flagID, 0x7c9, "identifier of the outbound frame")
	pf.Bool(flagExtended, false, "use a 29-bit outbound identifier")
	pf.Uint32(flagFilterID, 0x7cd, "inbound filter identifier")
	pf.Uint32(flagFilterMask, 0x7cd, "inbound filter mask")
	pf.BoolP(flagDebug, "d", false, "debug mode")
}
