// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

// Licensing information
const  legal=`Burststack is Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

The binary version of this program uses several open source libraries and components, which come with their own licensing terms:

| Library                                                                                              | License type                            | Usage    |
|------------------------------------------------------------------------------------------------------|-----------------------------------------|----------|
| [github.com/bytedance/sonic](https://github.com/bytedance/sonic)                                     | Apache 2.0 License                      | indirect |
| [github.com/chenzhuoyu/base64x](https://github.com/chenzhuoyu/base64x)                               | Apache 2.0 License                      | indirect |
| [github.com/chenzhuoyu/iasm](https://github.com/chenzhuoyu/iasm)                                     | Apache 2.0 License                      | indirect |
| [github.com/gabriel-vasile/mimetype](https://github.com/gabriel-vasile/mimetype)                     | MIT License                             | indirect |
| [github.com/gin-contrib/sse](https://github.com/gin-contrib/sse)                                     | MIT License                             | indirect |
| [github.com/gin-gonic/gin](https://github.com/gin-gonic/gin)                                         | MIT License                             |          |
| [github.com/go-playground/locales](https://github.com/go-playground/locales)                         | MIT License                             | indirect |
| [github.com/go-playground/universal-translator](https://github.com/go-playground/universal-translator) | MIT License                           | indirect |
| [github.com/go-playground/validator](https://github.com/go-playground/validator)                     | MIT License                             | indirect |
| [github.com/goccy/go-json](https://github.com/goccy/go-json)                                         | MIT License                             | indirect |
| [github.com/json-iterator/go](https://github.com/json-iterator/go)                                   | MIT License                             | indirect |
| [github.com/klauspost/cpuid](https://github.com/klauspost/cpuid)                                     | MIT License                             | indirect |
| [github.com/leodido/go-urn](https://github.com/leodido/go-urn)                                       | MIT License                             | indirect |
| [github.com/lucasb-eyer/go-colorful](https://github.com/lucasb-eyer/go-colorful)                     | MIT License                             |          |
| [github.com/mattn/go-isatty](https://github.com/mattn/go-isatty)                                     | MIT License                             | indirect |
| [github.com/modern-go/concurrent](https://github.com/modern-go/concurrent)                           | Apache 2.0 License                      | indirect |
| [github.com/modern-go/reflect2](https://github.com/modern-go/reflect2)                               | Apache 2.0 License                      | indirect |
| [github.com/pbnjay/memory](https://github.com/pbnjay/memory)                                         | BSD 3-Clause "New" or "Revised" License |          |
| [github.com/pelletier/go-toml](https://github.com/pelletier/go-toml)                                 | MIT License                             | indirect |
| [github.com/rwcarlsen/goexif](https://github.com/rwcarlsen/goexif)                                   | BSD 2-Clause "Simplified" License       |          |
| [github.com/twitchyliquid64/golang-asm](https://github.com/twitchyliquid64/golang-asm)               | BSD 3-Clause                            | indirect |
| [github.com/ugorji/go](https://github.com/ugorji/go)                                                 | MIT License                             | indirect |
| [github.com/valyala/fastrand](https://github.com/valyala/fastrand)                                   | MIT License                             |          |
| [golang.org/x/arch](https://golang.org/x/arch)                                                       | BSD 3-Clause                            | indirect |
| [golang.org/x/crypto](https://golang.org/x/crypto)                                                   | BSD 3-Clause                            | indirect |
| [golang.org/x/exp](https://golang.org/x/exp)                                                         | BSD 3-Clause                            | indirect |
| [golang.org/x/image](https://golang.org/x/image)                                                     | BSD 3-Clause                            |          |
| [golang.org/x/net](https://golang.org/x/net)                                                         | BSD 3-Clause                            | indirect |
| [golang.org/x/sys](https://golang.org/x/sys)                                                         | BSD 3-Clause                            | indirect |
| [golang.org/x/text](https://golang.org/x/text)                                                       | BSD 3-Clause                            | indirect |
| [golang.org/x/tools](https://golang.org/x/tools)                                                     | BSD 3-Clause                            | indirect |
| [gonum.org/v1/gonum](https://gonum.org/v1/gonum)                                                     | BSD 3-Clause "New" or "Revised" License |          |
| [google.golang.org/protobuf](https://google.golang.org/protobuf)                                     | BSD 3-Clause                            | indirect |
| [gopkg.in/yaml.v3](https://gopkg.in/yaml.v3)                                                         | MIT and Apache 2.0 Licenses             | indirect |
`
