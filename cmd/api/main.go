// Command api serves the HTTP, gRPC and Kafka submission entry points without running tasks.
package main

import "lingo-service/app"

func main() {
	app.Run(app.RoleAPI)
}
