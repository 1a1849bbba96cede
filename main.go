package main

import "lingo-service/app"

func main() {
	app.Run(app.RoleFromEnv())
}
