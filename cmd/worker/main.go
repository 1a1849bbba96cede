// Command worker runs only the pipeline worker pool and recovery loop.
package main

import "lingo-service/app"

func main() {
	app.Run(app.RoleWorker)
}
