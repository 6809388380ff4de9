package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentcore/agentcore/pkg/agentcore/llm"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session backed by a Broker",
	Long: `Reads lines from stdin, sends each as a turn through a
ChatSession/Broker pair, and prints the model's reply. Ctrl+D or "exit"
ends the session.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("system-prompt", "You are a helpful assistant.", "System prompt for the session")
	chatCmd.Flags().Int("max-context-tokens", 4000, "Token budget before oldest messages are evicted")
	chatCmd.Flags().String("session-id", "", "Session ID to checkpoint under (empty disables checkpointing)")
	chatCmd.Flags().Int("checkpoint-every", 1, "Checkpoint after this many chat turns")
}

func runChat(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := loadFileConfig(configPath)
	if err != nil {
		return err
	}
	envCfg, err := loadEnv()
	if err != nil {
		return err
	}

	gateway, err := buildGateway(cfg, envCfg)
	if err != nil {
		return err
	}
	capabilities := buildCapabilities(cfg)
	toolRegistry := buildToolRegistry()
	broker := buildBroker(cfg, gateway, capabilities, toolRegistry)

	checkpointStore, err := buildCheckpointStore(cfg, envCfg)
	if err != nil {
		return err
	}
	defer checkpointStore.Close()

	systemPrompt, _ := cmd.Flags().GetString("system-prompt")
	maxContext, _ := cmd.Flags().GetInt("max-context-tokens")
	sessionID, _ := cmd.Flags().GetString("session-id")
	checkpointEvery, _ := cmd.Flags().GetInt("checkpoint-every")

	descriptors := toolRegistry.Descriptors()
	var session *llm.ChatSession
	if sessionID != "" {
		sessOpts := []llm.ChatSessionOption{llm.WithCheckpoint(checkpointStore, checkpointEvery)}
		session, err = llm.RestoreChatSession(context.Background(), broker, descriptors, maxContext, llm.WordTokenizer{}, sessionID, sessOpts...)
		if err != nil {
			logger.Info("no existing checkpoint, starting fresh session", "session_id", sessionID)
			session = llm.NewChatSession(broker, systemPrompt, descriptors, maxContext, llm.WordTokenizer{}, sessOpts...)
			session.SessionID = sessionID
		}
	} else {
		session = llm.NewChatSession(broker, systemPrompt, descriptors, maxContext, llm.WordTokenizer{})
	}

	fmt.Println("agentcore chat - type 'exit' or Ctrl+D to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" {
			break
		}

		correlationID := uuid.NewString()
		reply, err := session.Send(context.Background(), correlationID, line)
		if err != nil {
			logger.Error("chat turn failed", "error", err)
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}

	return scanner.Err()
}
