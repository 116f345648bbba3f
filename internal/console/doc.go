// Package console is the client side of uartd: an API client and an
// interactive console that attaches a local terminal to a session.
//
// The client wraps resty over a retryablehttp transport, limits its own
// request rate and trips a circuit breaker when the server keeps failing.
// Policy rejections (503) are final answers and are never retried.
//
// Example Usage:
//
//	client, _ := console.NewClient(console.DefaultClientConfig())
//	con, err := console.Open(ctx, client, "init -> shell", nil, logger)
//	if err != nil {
//	    return err
//	}
//	defer con.Close(context.Background())
//	return con.Run(ctx, os.Stdin, os.Stdout)
package console
