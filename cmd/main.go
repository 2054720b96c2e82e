package main

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tcp_snm/slotpager/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "slotpager",
	Short: "slot/page cursor pagination for the judge api",
	Long: `slotpager serves pages of cursor paginated judge resources.

Pages inside the loaded slot are served from memory; moving past the
first or last page of a slot fetches the neighbouring slot.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setup()
	},
	SilenceUsage: true,
}

func setup() {
	godotenv.Load()
	setLogger()
	service.InitializeServices()
}

func setLogger() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		log.SetLevel(log.InfoLevel)
		return
	}
	level, err := log.ParseLevel(levelStr)
	if err != nil {
		log.Warnf("invalid log level %q, using info", levelStr)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {
	rootCmd.AddCommand(serveCmd, walkCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
