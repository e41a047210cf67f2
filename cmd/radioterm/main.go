package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hugodutka/radioterm/internal/channels"
	"github.com/hugodutka/radioterm/internal/config"
	"github.com/hugodutka/radioterm/internal/logsink"
	"github.com/hugodutka/radioterm/internal/model"
	"github.com/hugodutka/radioterm/internal/proxy"
	"github.com/hugodutka/radioterm/internal/telnet"
)

type cmdRadio struct {
	flagProxyHost  string
	flagProxyPort  uint16
	flagTelnetPort uint16
	flagTimeout    uint64
	flagConfig     string
}

func main() {
	radioCmd := cmdRadio{}
	app := radioCmd.command()

	if err := app.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (c *cmdRadio) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "radioterm",
		Short:         "A tool to get music from radio proxies",
		Long:          "Discovers radio proxies over UDP, serves a selection menu to a telnet client,\nand streams the chosen proxy's audio to standard output.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.run,
	}
	cmd.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}

	flags := cmd.Flags()
	flags.StringVarP(&c.flagProxyHost, "proxy-host", "H", config.DefaultProxyHost, "Host discover datagrams are sent to")
	flags.Uint16VarP(&c.flagProxyPort, "proxy-port", "P", config.DefaultProxyPort, "Port discover datagrams are sent to")
	flags.Uint16VarP(&c.flagTelnetPort, "telnet-port", "p", 0, "Port the telnet menu listens on")
	flags.Uint64VarP(&c.flagTimeout, "timeout", "T", config.DefaultTimeout, "Seconds without contact before a proxy is dropped")
	flags.StringVarP(&c.flagConfig, "config", "c", "", "Optional YAML config file")

	return cmd
}

func (c *cmdRadio) run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if c.flagConfig != "" {
		var err error
		cfg, err = config.Load(c.flagConfig)
		if err != nil {
			return err
		}
	}

	// Explicit flags win over the config file.
	flags := cmd.Flags()
	if flags.Changed("proxy-host") {
		cfg.ProxyHost = c.flagProxyHost
	}
	if flags.Changed("proxy-port") {
		cfg.ProxyPort = c.flagProxyPort
	}
	if flags.Changed("telnet-port") {
		cfg.TelnetPort = c.flagTelnetPort
	}
	if flags.Changed("timeout") {
		cfg.Timeout = c.flagTimeout
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	discoverAddr, err := cfg.DiscoverAddr()
	if err != nil {
		return err
	}

	bundle := channels.New()
	handle := &telnet.Handle{}
	sock := &proxy.Socket{}

	go logsink.Run(bundle, logsink.New(os.Stderr))
	go telnet.NewServer("0.0.0.0", cfg.TelnetPort, bundle, handle).Run()
	go telnet.RunWriter(bundle, handle)
	go proxy.Run(bundle, sock, "0.0.0.0:0")
	go proxy.RunWriter(bundle, sock)
	go model.RunTicker(bundle)

	return model.New(bundle, discoverAddr, cfg.LivenessTimeout()).Run()
}
