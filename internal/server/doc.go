// Package server hosts the Fiber HTTP service, request middleware chain, and
// the routing glue that splits traffic between the status intercept handler,
// the agent control surface, and the origin passthrough. It bootstraps Fiber,
// attaches recover and request-ID middlewares, and shares one upstream HTTP
// client across status fetches and passthrough forwarding. Keep exports
// narrow and accept explicit dependencies.
package server
