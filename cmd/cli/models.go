package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect and rebuild the recommendation models",
}

var updateType string

var modelsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the serving model generation and recent rebuilds",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON("/api/v1/admin/models/status")
	},
}

var modelsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Force an immediate model rebuild",
	Long: `Force an immediate model rebuild instead of waiting for the rating
threshold. Use --type full_retrain after bulk imports, --type warm_start to
fold in recent ratings quickly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return forceUpdate(updateType)
	},
}

func init() {
	modelsUpdateCmd.Flags().StringVar(&updateType, "type", "full_retrain", "Update type: full_retrain or warm_start")

	modelsCmd.AddCommand(modelsStatusCmd)
	modelsCmd.AddCommand(modelsUpdateCmd)
}

func forceUpdate(updateType string) error {
	payload := map[string]interface{}{
		"update_type": updateType,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := http.Post(apiURL+"/api/v1/admin/models/update", "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func getJSON(path string) error {
	resp, err := http.Get(apiURL + path)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s: %s", resp.Status, string(body))
	}

	if output == "json" {
		fmt.Println(string(body))
		return nil
	}

	// Pretty-print for humans
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
