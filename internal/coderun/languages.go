package coderun

// Language is an editor language with the snippet shown when it is selected.
type Language struct {
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

// FallbackSnippet is offered for a language without a default snippet.
const FallbackSnippet = "// Type your code here"

// Languages lists the languages the execution backend accepts, in menu order.
var Languages = []Language{
	{Name: "javascript", Snippet: `console.log("Hello, World!");`},
	{Name: "python", Snippet: `print("Hello, World!")`},
	{Name: "java", Snippet: `public class Main {
    public static void main(String[] args) {
        System.out.println("Hello, World!");
    }
}`},
	{Name: "cpp", Snippet: `#include <iostream>
using namespace std;
int main() {
    cout << "Hello, World!" << endl;
    return 0;
}`},
	{Name: "bash", Snippet: `echo "Hello, World!"`},
	{Name: "go", Snippet: `package main
import "fmt"
func main() {
    fmt.Println("Hello, World!")
}`},
}

// Supported reports whether name is one of Languages.
func Supported(name string) bool {
	_, ok := lookup(name)
	return ok
}

// DefaultSnippet returns the starter code for name, or FallbackSnippet.
func DefaultSnippet(name string) string {
	if l, ok := lookup(name); ok && l.Snippet != "" {
		return l.Snippet
	}
	return FallbackSnippet
}

func lookup(name string) (Language, bool) {
	for _, l := range Languages {
		if l.Name == name {
			return l, true
		}
	}
	return Language{}, false
}
