// Package session connects to a middleware and hands out service proxies.
//
// A Session is built once from an explicit Config and a transport.Dialer:
//
//	sess, err := session.Connect(ctx, func(o *session.Options) {
//		o.Config = cfg
//		o.Dialer = dialer
//	})
//	defer sess.Close()
//
//	memory, err := sess.Service(ctx, "ALMemory")
//	n, err := session.CallAs[int32](ctx, memory, "getData", "MyApplication/MyData")
//
// Calls block until the remote side answers, the transport fails, the
// caller's context ends or the session closes. Subscriptions return only
// after the middleware acknowledged them.
package session
