// Package ginscope scopes a container to each gin request.
//
// Middleware opens a sub-container of the root for every request and
// closes it when the request ends, so request-scoped values never leak
// into the root. Handle resolves a handler's di.In parameters from that
// sub-container.
//
//	r := gin.New()
//	r.Use(ginscope.Middleware(root))
//	r.GET("/orders/:id", ginscope.MustHandle(root, getOrder))
package ginscope
