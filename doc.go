// Package narlie provides a compiler and runtime for Narlie, a small
// Lisp-like S-expression language.
//
// Source text is tokenized, parsed into a scoped tree in which every
// identifier is resolved to a built-in function, a host method or a
// variable, and lowered into bytecode for a stack-based virtual machine.
//
// # Quick Start
//
// For simple one-off execution:
//
//	output, err := narlie.Run(`(println "hello" (+ 1 2))`, nil)
//	// output: "hello 3\n"
//
// # Compiled Programs
//
// For repeated execution of the same program:
//
//	prog, err := narlie.Compile(`
//	    (let total 0)
//	    (for (let i 1) (<= i 10) (set i (+ i 1))
//	        (set total (+ total i)))
//	    total`, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	value, err := prog.Eval(ctx, os.Stdout)
//	// value: "55"
//
// # Host Types
//
// Static methods of host types are called with the method name first and
// the type second, after importing the namespace with using:
//
//	(using System)
//	(WriteLine Console (Max Math 3 4))
//
// [Config.AllowHost] restricts the visible host types with a regular
// expression.
//
// # Persistence and Caching
//
// [Config.Output] persists the compiled program as a JSON artifact that
// [Load] reads back. [Config.Cache] names a SQLite file in which compiled
// artifacts are cached by source and options.
//
// # Error Handling
//
// Errors are returned as specific types for detailed handling:
//   - [LexError]: invalid tokens
//   - [ParseError]: grammar and resolution errors
//   - [CodeGenError]: errors while lowering the parsed program
//   - [RuntimeError]: errors during execution
//
// # Thread Safety
//
// Compiled [Program] objects are safe for concurrent use.
// Each call to [Program.Run] creates an independent execution context.
package narlie
