// Command ws builds a workspace of interdependent projects described by a
// repo manifest.
package main

import "github.com/goplus/ws/cmd/ws/internal"

func main() {
	internal.Execute()
}
