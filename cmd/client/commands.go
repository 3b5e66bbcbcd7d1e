package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/9triver/switchboard/internal/envelope"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// callCmd 调用方法并打印响应
var callCmd = &cobra.Command{
	Use:   "call <method> [args...]",
	Short: "调用方法并等待响应",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.Call(context.Background(), args[0], parseArgs(args[1:])...)
		if err != nil {
			return err
		}
		out, err := jsoniter.MarshalIndent(resp.Response, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// sendCmd 从标准输入逐行读取参数并发送，不等待响应
var sendCmd = &cobra.Command{
	Use:   "send <method>",
	Short: "逐行读取标准输入作为参数发送方法调用",
	Long:  "每行以空白分隔的参数会被解析为 JSON 值，例如 set_rgb 的一行 `1 0.5 0`",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := c.Notify(args[0], parseArgs(strings.Fields(line))...); err != nil {
				logrus.Errorf("Send failed: %v", err)
			}
		}
		return scanner.Err()
	},
}

var follow bool

// subscribeCmd 订阅 topic；--follow 时持续打印收到的事件直到中断
var subscribeCmd = &cobra.Command{
	Use:   "subscribe <topic> <id>",
	Short: "订阅 topic",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Subscribe(args[0], args[1]); err != nil {
			return err
		}
		if !follow {
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return c.Listen(ctx, func(event *envelope.Envelope) {
			out, err := jsoniter.Marshal(event.Response)
			if err != nil {
				logrus.Warnf("Failed to print event: %v", err)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", event.Type, out)
		})
	},
}

func init() {
	subscribeCmd.Flags().BoolVarP(&follow, "follow", "f", false, "print events until interrupted")
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <topic> <id>",
	Short: "取消订阅",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()
		return c.Unsubscribe(args[0], args[1])
	},
}
