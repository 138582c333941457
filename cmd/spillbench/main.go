package main

func main() {
	root := root()
	root.AddCommand(
		run(),
	)
	root.Execute()
}
