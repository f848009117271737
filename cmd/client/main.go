// cmd/client is a CLI smoke-test client speaking the raw TCP wire protocol
// directly.
//
// Usage:
//
//	kvcli set mykey "hello world"    --server localhost:9000
//	kvcli get mykey                  --server localhost:9000
//	kvcli delete mykey                --server localhost:9000
//	kvcli search "hello"              --server localhost:9000
//	kvcli phrase "hello world"        --server localhost:9000
//	kvcli semantic "greeting"         --server localhost:9000
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppriyankuu/kvstore/internal/tcpclient"
	"github.com/spf13/cobra"
)

var (
	serverAddr string
	timeout    time.Duration
	topK       int
)

func main() {
	root := &cobra.Command{
		Use:   "kvcli",
		Short: "CLI client for the distributed KV store",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"localhost:9000", "node's key-value TCP address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second,
		"per-call timeout")

	root.AddCommand(setCmd(), getCmd(), deleteCmd(), searchCmd(), phraseCmd(), semanticCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := tcpclient.New(serverAddr, timeout)
			redirect, err := c.Set(args[0], args[1])
			if err != nil {
				return err
			}
			if redirect != nil {
				fmt.Printf("not the leader; retry at %s\n", *redirect)
				return nil
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := tcpclient.New(serverAddr, timeout)
			value, err := c.Get(args[0])
			if err == tcpclient.ErrNotFound {
				fmt.Printf("key %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := tcpclient.New(serverAddr, timeout)
			redirect, err := c.Delete(args[0])
			if err != nil {
				return err
			}
			if redirect != nil {
				fmt.Printf("not the leader; retry at %s\n", *redirect)
				return nil
			}
			fmt.Printf("deleted %q\n", args[0])
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text TF-IDF search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := tcpclient.New(serverAddr, timeout)
			hits, err := c.FullTextSearch(args[0], topK)
			if err != nil {
				return err
			}
			return printHits(hits)
		},
	}
	cmd.Flags().IntVar(&topK, "top", 10, "max results")
	return cmd
}

func phraseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phrase <phrase>",
		Short: "Exact-phrase search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := tcpclient.New(serverAddr, timeout)
			hits, err := c.PhraseSearch(args[0], topK)
			if err != nil {
				return err
			}
			return printHits(hits)
		},
	}
	cmd.Flags().IntVar(&topK, "top", 10, "max results")
	return cmd
}

func semanticCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semantic <query>",
		Short: "Hashed-trigram semantic search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := tcpclient.New(serverAddr, timeout)
			hits, err := c.SemanticSearch(args[0], topK)
			if err != nil {
				return err
			}
			return printHits(hits)
		},
	}
	cmd.Flags().IntVar(&topK, "top", 10, "max results")
	return cmd
}

func printHits(hits any) error {
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
