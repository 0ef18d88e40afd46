package apiclient

import "context"

// getResource performs a GET request to the given path and decodes the
// envelope data into a value of type T.
//
// Example:
//
//	h, err := getResource[Health](ctx, c, "/health")
func getResource[T any](ctx context.Context, c *Client, path string) (*T, error) {
	var result T
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// postResource performs a POST request with the provided body and decodes
// the envelope data into a value of type T.
func postResource[T any](ctx context.Context, c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
