package main

import (
	"time"

	"github.com/9triver/switchboard/pkg/client"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	endpoint string
	identity string
	timeout  time.Duration
	verbose  bool
)

// rootCmd 客户端根命令
var rootCmd = &cobra.Command{
	Use:   "switchctl",
	Short: "switchboard 服务客户端",
	Long:  "通过 ZeroMQ DEALER 套接字向 switchboard 服务发送方法调用与订阅请求",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "tcp://127.0.0.1:5555", "service endpoint")
	rootCmd.PersistentFlags().StringVar(&identity, "identity", "", "socket identity (random when empty)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "response timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(callCmd, sendCmd, subscribeCmd, unsubscribeCmd)
}

func dial() (*client.Client, error) {
	return client.Dial(endpoint, client.Options{Identity: identity, Timeout: timeout})
}

// parseArgs 把每个参数按 JSON 解析，无法解析时当作字符串
func parseArgs(raw []string) []any {
	args := make([]any, 0, len(raw))
	for _, r := range raw {
		var v any
		if err := jsoniter.Unmarshal([]byte(r), &v); err != nil {
			args = append(args, r)
			continue
		}
		args = append(args, v)
	}
	return args
}
