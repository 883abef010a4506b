/*
Package slicer is a motion driven slit-scan painter. It estimates the optical flow between
consecutive camera frames with a block matching algorithm and, while the scene moves,
copies slices of the captured frames onto a large canvas following one of the scan modes.

The package provides a command line interface replaying a directory of captured frames.
To check the supported commands type:

	$ slicer --help

The flow calculator can also be used on its own:

	package main

	import (
		"fmt"
		"github.com/esimov/slicer"
	)

	func main() {
		fc, err := slicer.NewFlowCalculator(8)
		if err != nil {
			panic(err)
		}

		flow, err := fc.Calculate(previous, current, width, height)
		if err != nil {
			fmt.Printf("Error calculating the flow: %s", err.Error())
		}
		fmt.Println(flow.U, flow.V)
	}
*/
package slicer
