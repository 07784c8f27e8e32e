package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kormik/rediscore/internal/serializer"
	"github.com/kormik/rediscore/redis"
)

var version = "dev" // set at build time via -ldflags "-X main.version=..."

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:     "rediscore",
		Short:   "Client for Redis standalone, sentinel and cluster deployments",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}

			if v.GetBool("verbose") {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}

			var codec serializer.Codec
			if name := v.GetString("decode"); name != "" {
				var err error
				codec, err = serializer.Lookup(name)
				if err != nil {
					return err
				}
			}

			conn := redis.NewConnection(buildConfig(v), false)
			if err := conn.Connect(true); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer conn.Disconnect()

			if oneShot := v.GetString("command"); oneShot != "" {
				return runOneShot(conn, oneShot, codec)
			}
			return runRepl(conn, codec)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&cfgFile, "config", "f", "", "Config file (YAML)")
	flags.StringP("host", "H", "localhost", "Redis server host")
	flags.IntP("port", "p", 6379, "Redis server port")
	flags.String("password", "", "Redis password")
	flags.StringP("command", "c", "", "Execute a single command and exit")
	flags.String("decode", "", "Decode bulk values with a codec: snappy, gzip, base64")
	flags.Bool("tls", false, "Connect with TLS")
	flags.Bool("ssh", false, "Tunnel the connection through SSH")
	flags.String("ssh-host", "", "SSH server host")
	flags.Int("ssh-port", 22, "SSH server port")
	flags.String("ssh-user", "", "SSH user")
	flags.String("ssh-password", "", "SSH password")
	flags.String("ssh-key", "", "SSH private key file")
	flags.Bool("override-cluster-host", true, "Connect to hosts announced by CLUSTER SLOTS")
	flags.BoolP("verbose", "v", false, "Debug logging")

	v.BindPFlags(flags)
	v.SetEnvPrefix("REDISCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return root
}

func buildConfig(v *viper.Viper) redis.ConnectionConfig {
	cfg := redis.DefaultConfig(v.GetString("host"), v.GetInt("port"))
	cfg.AuthPassword = v.GetString("password")
	cfg.UseTLS = v.GetBool("tls")
	cfg.OverrideClusterHost = v.GetBool("override-cluster-host")

	if v.GetBool("ssh") {
		cfg.UseSSHTunnel = true
		cfg.SSH = redis.SSHConfig{
			Host:           v.GetString("ssh-host"),
			Port:           v.GetInt("ssh-port"),
			User:           v.GetString("ssh-user"),
			Password:       v.GetString("ssh-password"),
			PrivateKeyPath: v.GetString("ssh-key"),
		}
		// tunnelled cluster nodes are reachable only through the
		// configured endpoint
		cfg.OverrideClusterHost = false
	}
	return cfg
}

func runOneShot(conn *redis.Connection, line string, codec serializer.Codec) error {
	args := tokenize(line)
	if len(args) == 0 {
		return fmt.Errorf("empty command")
	}

	r, err := conn.CommandSyncRaw(toFrames(args), -1)
	if err != nil {
		return err
	}

	printValue(os.Stdout, r.Value(), printOpts{codec: codec})
	return nil
}

func toFrames(args []string) [][]byte {
	frames := make([][]byte, len(args))
	for i, a := range args {
		frames[i] = []byte(a)
	}
	return frames
}
