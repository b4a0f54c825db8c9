package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/aehx/internal/services"
	"github.com/desertthunder/aehx/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct GET request to the API
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	r.logger.Info("GET request", "path", path)

	resp, err := r.api().Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeResponse(resp, cmd.Bool("json"))
}

// APIPost makes a direct POST request to the API
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data, err := requestBody(cmd.String("data"), true)
	if err != nil {
		return err
	}
	r.logger.Info("POST request", "path", path)

	resp, err := r.api().Post(ctx, path, data)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeResponse(resp, cmd.Bool("json"))
}

// APIDelete makes a direct DELETE request to the API
func (r *Runner) APIDelete(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data, err := requestBody(cmd.String("data"), false)
	if err != nil {
		return err
	}
	r.logger.Info("DELETE request", "path", path)

	resp, err := r.api().Delete(ctx, path, data)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeResponse(resp, cmd.Bool("json"))
}

func requestBody(data string, required bool) ([]byte, error) {
	if data == "" {
		if required {
			return nil, fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
		}
		return nil, nil
	}
	if !json.Valid([]byte(data)) {
		return nil, fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidInput)
	}
	return []byte(data), nil
}

// writeResponse prints the body of a 2xx response, compact when raw is set.
func (r *Runner) writeResponse(resp *services.APIResponse, raw bool) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, !raw)
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}
