// Package native holds the boundary representation of dynamic values: node
// trees addressed through a handle table.
//
// It plays the role of the middleware's native value API (create by
// signature, element get/set/append, primitive reads, release). Every
// top-level value is a slot in a Table; Handles carry a generation so a
// released handle can never alias a later allocation. Containers own their
// children outright, so releasing a handle frees the whole tree.
//
// Nodes are not safe for concurrent mutation. The Table itself is safe for
// concurrent use.
package native
