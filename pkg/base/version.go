// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "strings"

// M2tsVersion 整个工程的版本号。注意，该变量由外部脚本修改维护，不要手动在代码中修改
//
const M2tsVersion = "v0.1.0"

// ConfVersion tsdemux的配置文件的版本号
//
const ConfVersion = "v0.1.0"

var (
	M2tsLibraryName = "m2ts"
	M2tsGithubRepo  = "github.com/q191201771/m2ts"

	// M2tsFullInfo e.g. m2ts v0.1.0 (github.com/q191201771/m2ts)
	M2tsFullInfo = M2tsLibraryName + " " + M2tsVersion + " (" + M2tsGithubRepo + ")"

	// M2tsVersionDot e.g. 0.1.0
	M2tsVersionDot string
)

func init() {
	M2tsVersionDot = strings.TrimPrefix(M2tsVersion, "v")
}
