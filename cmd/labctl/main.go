// labctl is the content author's tool for challenge packs.
package main

func main() {
	Execute()
}
